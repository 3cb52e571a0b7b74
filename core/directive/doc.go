// Package directive reads the Ruby-flavoured directive files used to describe a
// pre-forking server (the config/puma.rb shape).
//
// A file is a sequence of lines. Each non-blank line holds one directive call:
//
//	port 3000
//	workers 3
//	preload_app!
//	activate_control_app 'tcp://127.0.0.1:9292', { no_token: true }
//	plugin 'metrics'
//	metrics_url 'tcp://0.0.0.0:9393'
//
// Arguments may be quoted strings, integers (underscores allowed), true/false,
// nil, :symbols or hash literals written either as `{ key: value }` or
// `{ :key => value }`. Arguments may also be wrapped in parentheses. Text after
// an unquoted '#' is a comment.
//
// The package only knows syntax. Meaning and validation of each directive live in
// core/settings.
package directive
