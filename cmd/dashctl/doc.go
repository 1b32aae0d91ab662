// Command dashctl drives a WordOps dashboard over its HTTP API.
//
//	dashctl login --username admin
//	dashctl sites --type wordpress --ssl true
//	dashctl restart php8.3-fpm
//	dashctl metrics --range 1h
//
// The token saved by login lives in the user config directory and can be
// overridden with --token or WO_DASHBOARD_TOKEN.
package main
