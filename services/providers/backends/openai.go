//go:build !noopenai

package backends

import _ "github.com/upb/ai-dispatcher/services/providers/openai"
