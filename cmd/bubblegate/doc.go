// Command bubblegate runs the display phase controller and its control API.
//
// Configuration comes from environment variables (see internal/infrastructure/config),
// optionally overlaid by a YAML file given with --config;
// flags override them:
//
//	bubblegate --port 8000 --config-url https://cfg.example.com --app-id 1234567890 --store gate.db
//
// SIGINT and SIGTERM shut the control API down, close the browsing session and
// flush the store.
package main
