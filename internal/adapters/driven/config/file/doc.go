// Package file loads and saves the sercha-ingest configuration.
//
// Values are layered: built-in defaults, then the TOML file
// (~/.sercha-ingest/config.toml unless a path is given), then SERCHA_*
// environment variables. Environment names are the section prefix plus the
// key, for example SERCHA_STORAGE_BACKEND or SERCHA_SCHEDULER_TICK_INTERVAL.
package file
