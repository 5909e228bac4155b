//go:build !nogemini

package backends

import _ "github.com/upb/ai-dispatcher/services/providers/gemini"
