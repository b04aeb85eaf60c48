package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"

	"github.com/hay-kot/dtfchat/internal/resilient"
)

func TestPrinter_Notify(t *testing.T) {
	tests := []struct {
		name  string
		n     resilient.Notification
		color string
		want  string
	}{
		{
			name:  "error",
			n:     resilient.Notification{Level: resilient.LevelError, Title: "API Error", Message: "Server error"},
			color: ColorRed,
			want:  "Server error",
		},
		{
			name:  "warning without message",
			n:     resilient.Notification{Level: resilient.LevelWarning, Title: "Slow down"},
			color: ColorYellow,
			want:  "Slow down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			New(&buf).Notify(tt.n)

			out := buf.String()
			assert.Contains(t, out, tt.color)
			assert.Contains(t, out, tt.n.Title)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestPrinter_FatalErrorFieldErrors(t *testing.T) {
	var buf bytes.Buffer
	var b criterio.FieldErrorsBuilder
	err := fmt.Errorf("load config: invalid config: %w", b.Append("api.base_url", errors.New("must be an absolute URL")).ToError())

	New(&buf).FatalError(err)

	out := buf.String()
	assert.Contains(t, out, "Validation Error")
	assert.Contains(t, out, "api.base_url: ")
	assert.Contains(t, out, "load config")
}

func TestCtx_Default(t *testing.T) {
	p := New(&bytes.Buffer{})
	ctx := NewContext(context.Background(), p)
	assert.Same(t, p, Ctx(ctx))
	assert.NotNil(t, Ctx(context.Background()))
}
