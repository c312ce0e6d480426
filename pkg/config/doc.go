// Package config loads and validates the buttond rule tree.
//
// The configuration is plain YAML mapping 1:1 onto the Config struct:
// a global section (poll interval, handler credentials, export and
// trigger rules) plus any number of device sections whose filter is
// matched against device names. Filter and text-condition fields hold
// regular expressions; they are carried as strings here and compiled
// by the engine's rule matcher, which drops individual rules that
// fail to compile rather than rejecting the whole file.
//
// Struct-tag validation uses go-playground/validator; rules the tags
// cannot express (a trigger needs exactly one of numeric/text) are
// checked in Loader.Validate. The Watcher reports file changes so the
// daemon can reload its rule tree while running.
package config
