// Package config loads the eventscope configuration.
//
// A configuration is built in layers:
//
//  1. Default() values
//  2. each file passed to AddLayer, in order (JSON, or YAML for .yaml/.yml)
//  3. EVENTSCOPE_* environment variables
//
// Every file layer is checked against an embedded JSON schema before it is
// merged, so misspelled keys and wrong types are reported with the file
// name. Duration fields accept Go duration strings ("33ms", "2s") or
// integer nanoseconds. The merged result is checked with Config.Validate,
// which enforces the cross-field rules the schema cannot express, such as
// low_watermark < high_watermark.
//
// # Basic Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.yaml")
//	loader.AddLayer("configs/lab.json") // Overrides base
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Environment Overrides
//
//	EVENTSCOPE_INPUT_SOURCE      synthetic | nats
//	EVENTSCOPE_NATS_URL          inputs.nats.url
//	EVENTSCOPE_NATS_SUBJECT      inputs.nats.subject
//	EVENTSCOPE_NATS_USERNAME     inputs.nats.username
//	EVENTSCOPE_NATS_PASSWORD     inputs.nats.password
//	EVENTSCOPE_NATS_TOKEN        inputs.nats.token
//	EVENTSCOPE_WEBSOCKET_PORT    outputs.websocket.port
//	EVENTSCOPE_METRICS_PORT      metrics.port
//	EVENTSCOPE_PLAYBACK_STRICT   playback.strict
//
// Config.String redacts NATS credentials and is safe to log.
package config
