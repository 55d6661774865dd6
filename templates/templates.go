// File: templates/templates.go
// Brief: Embedded CloudFormation templates for every provisionable stack.

// Package templates carries the declarative stack documents. Each template
// declares every value later pipeline steps depend on as a named output.
package templates

import _ "embed"

//go:embed alert-topic.yaml
var AlertTopic string

//go:embed tables.yaml
var Tables string

//go:embed role.yaml
var Role string

//go:embed function.yaml
var Function string

//go:embed alarms.yaml
var Alarms string
