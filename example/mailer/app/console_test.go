package app

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitForQuitOnTrimmedQ(t *testing.T) {
	var out bytes.Buffer
	called := 0
	quit := func() { called++ }

	got := WaitForQuit(context.Background(), strings.NewReader("hello\nquit\n  q  \nq\n"), &out, quit)

	assert.True(t, got)
	assert.Equal(t, 1, called)
	assert.Equal(t, Prompt, out.String())
}

func TestWaitForQuitIgnoresEOF(t *testing.T) {
	called := false
	got := WaitForQuit(context.Background(), strings.NewReader("x\ny"), nil, func() { called = true })

	assert.False(t, got)
	assert.False(t, called, "EOF では終了しない")
}

func TestWaitForQuitReturnsWhenContextEnds(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan bool, 1)
	go func() { done <- WaitForQuit(ctx, pr, nil, func() {}) }()

	select {
	case got := <-done:
		assert.False(t, got)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForQuit がコンテキスト終了後も戻らない")
	}
}
