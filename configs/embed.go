// Package configs embeds the configuration template written by
// `amansuggest config init`.
package configs

import _ "embed"

// ConfigTemplate is a commented config.yaml with every default spelled out.
//
//go:embed config.example.yaml
var ConfigTemplate string
