package imap

import (
	"testing"

	goimap "github.com/emersion/go-imap"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsLoginRejected(t *testing.T) {
	rejected := &goimap.ErrStatusResp{Resp: &goimap.StatusResp{
		Type: goimap.StatusRespNo,
		Info: "Authentication failed.",
	}}

	assert.True(t, isLoginRejected(rejected))
	assert.True(t, isLoginRejected(errors.Wrap(rejected, "login")))

	// A session that breaks mid-command says nothing about credentials.
	assert.False(t, isLoginRejected(errors.New("read tcp: connection reset by peer")))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, isTimeout(errors.New("read tcp 10.0.0.1:993: i/o timeout")))
	assert.False(t, isTimeout(errors.New("connection refused")))
}
