// Package config provides the configuration of domainmap: crawl workers,
// fetch timeouts, the task broker, the domain database and the offline
// enrichment databases.
//
// Values come from defaults (NewConfig), an optional YAML file
// (LoadConfigFile) and CLI flags, in increasing priority.
package config
