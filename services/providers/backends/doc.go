// Package backends links the provider adapters into a binary.
//
// Each adapter is imported for its registration side effect and can be
// compiled out with a build tag ("nogemini", "noopenai"). A binary built
// without an adapter reports a missing library when that provider is
// initialized.
package backends
