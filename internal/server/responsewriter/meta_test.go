package responsewriter_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"nethost.io/nethost/internal/server/responsewriter"
)

func TestMetaResponseWriterCapturesStatusAndSize(t *testing.T) {
	rec := httptest.NewRecorder()
	mw := responsewriter.NewMetaResponseWriter(rec)

	mw.WriteHeader(201)
	n, err := mw.Write([]byte("hello"))

	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 201, mw.StatusCode)
	assert.Equal(t, 5, mw.Size)
}

func TestMetaResponseWriterDefaultsStatusToOK(t *testing.T) {
	mw := responsewriter.NewMetaResponseWriter(httptest.NewRecorder())
	assert.Equal(t, 200, mw.StatusCode)
}
