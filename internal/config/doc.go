// Package config provides configuration types and loading for the
// authenticating gateway.
//
// Configuration is read once at startup from an optional YAML file,
// with ${VAR} and ${VAR:-default} substitution, and then overlaid with
// the deployment environment variables (JWKS_URL, ROUTER_URL, PORT,
// LOG_LEVEL, ...). The resulting GatewayConfig is immutable for the
// lifetime of the process.
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
package config
