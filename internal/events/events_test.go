package events

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectsFallUnderStream(t *testing.T) {
	for _, subj := range []string{
		TabCreated, TabUpdated, TabDeleted,
		PageCreated, PageUpdated, PageDeleted,
		SectionCreated, SectionUpdated, SectionDeleted,
		FileUploaded, FileDeleted, FileMoved, FileCopied, FileExtracted,
	} {
		assert.True(t, strings.HasPrefix(subj, "wownote."), subj)
	}
}

func TestNilBusPublish(t *testing.T) {
	var b *Bus
	require.Error(t, b.Publish(context.Background(), TabCreated, map[string]any{}))
	b.Close()
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	require.NoError(t, p.Publish(context.Background(), TabCreated, nil))
}
