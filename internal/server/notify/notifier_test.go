package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewWriterNotifier(&buf)
	ctx := context.Background()

	require.NoError(t, n.SendCode(ctx, "a@x.com", models.FlowReset, "987654"))
	require.NoError(t, n.SendResetConfirmation(ctx, "a@x.com"))
	require.NoError(t, n.SendWelcome(ctx, "a@x.com", "Alice"))

	out := buf.String()
	assert.Contains(t, out, "To: a@x.com")
	assert.Contains(t, out, "987654")
	assert.Contains(t, out, "reset your password")
	assert.Contains(t, out, "password was changed")
	assert.Contains(t, out, "Hi Alice")
}

func TestCodeMessage_Purpose(t *testing.T) {
	tests := []struct {
		flow models.Flow
		want string
	}{
		{models.FlowLogin, "to sign in."},
		{models.FlowReset, "to reset your password."},
		{models.FlowLoginMnemonic, "to sign in with your recovery phrase."},
	}
	for _, tt := range tests {
		t.Run(string(tt.flow), func(t *testing.T) {
			m := codeMessage("a@x.com", tt.flow, "111111")
			assert.Contains(t, m.Body, "111111 "+tt.want)
		})
	}
}
