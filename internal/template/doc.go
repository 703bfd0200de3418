// Package template stores reusable node configuration blueprints and
// resolves them into fleet configuration.
//
// Template data is a nested map whose strings (and map keys) may contain
// placeholders:
//
//	{{ node_name }}                 required, fails when not supplied
//	{{ rocketpool_fee|default:15 }} falls back to the inline default
//
// Substituted values are always strings. Templates are kept in registration
// order, built-ins first, and persisted as one YAML document per template
// with ISO-8601 created/updated timestamps.
package template
