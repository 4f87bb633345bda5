// Package config defines configuration for the bundlefetch CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (BUNDLEFETCH_ prefix)
//   - YAML configuration file
//
// Flags override the environment, which overrides the file. The timeout
// bounds the wait for response headers; body transfers are bounded only by
// cancellation.
//
// # File Format
//
//	cache_dir: /var/cache/bundles
//	bucket_url: s3://my-bundles?region=eu-west-1
//	timeout: 1m
//	max_size: 512MiB
//	lock_timeout: 5m
//	progress: true
//	retry:
//	  attempts: 3
//	  backoff: 500ms
//	  max_backoff: 10s
//	log:
//	  format: json
//	  level: debug
package config
