package content

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	pageBody []byte
	pageErr  error
	pdfBody  []byte
	pdfErr   error

	pageCalls int
	pdfCalls  int
}

func (f *fakeFetcher) FetchPage(_ context.Context, _ string) ([]byte, error) {
	f.pageCalls++
	return f.pageBody, f.pageErr
}

func (f *fakeFetcher) FetchPDF(_ context.Context, _ string) ([]byte, error) {
	f.pdfCalls++
	return f.pdfBody, f.pdfErr
}

func TestLoad_RejectsInvalidURL(t *testing.T) {
	t.Parallel()

	l := New(&fakeFetcher{}, true, zap.NewNop())
	_, err := l.Load(context.Background(), "not-a-url")
	require.Error(t, err)
}

func TestLoad_SkipsHTMLWhenDisabled(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pageBody: []byte("<html>x</html>")}
	l := New(f, false, zap.NewNop())

	text, err := l.Load(context.Background(), "https://example.com/bill")
	require.NoError(t, err)
	require.Empty(t, text)
	require.Zero(t, f.pageCalls)
}

func TestLoad_HTMLBody(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>Gaming Reform Bill</title></head><body><article>
<p>The Gaming Reform Bill 2025 amends the regulation of casino operations in Tasmania.
It introduces mandatory compliance reporting for all licensed wagering providers and
establishes new penalty provisions for breaches of harm minimisation requirements.</p>
<p>The bill also creates an independent gambling commission with enforcement powers
over lottery and betting operators across the state.</p>
</article></body></html>`

	f := &fakeFetcher{pageBody: []byte(page)}
	l := New(f, true, zap.NewNop())

	text, err := l.Load(context.Background(), "https://example.com/bills/gaming-reform")
	require.NoError(t, err)
	require.Contains(t, text, "casino operations")
	require.Equal(t, 1, f.pageCalls)
	require.Zero(t, f.pdfCalls)
}

func TestLoad_PDFMismatchYieldsNothing(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pdfBody: nil}
	l := New(f, true, zap.NewNop())

	text, err := l.Load(context.Background(), "https://example.com/papers/report.PDF")
	require.NoError(t, err)
	require.Empty(t, text)
	require.Equal(t, 1, f.pdfCalls)
	require.Zero(t, f.pageCalls)
}

func TestLoad_CorruptPDFIsBestEffort(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pdfBody: []byte("not a real pdf")}
	l := New(f, true, zap.NewNop())

	text, err := l.Load(context.Background(), "https://example.com/papers/report.pdf")
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestLoad_PropagatesFetchErrors(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("connection refused")
	l := New(&fakeFetcher{pdfErr: wantErr}, true, zap.NewNop())

	_, err := l.Load(context.Background(), "https://example.com/papers/report.pdf")
	require.ErrorIs(t, err, wantErr)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	l := New(&fakeFetcher{}, false, zap.NewNop())
	l.maxTextLen = 4
	require.Equal(t, "abcd", l.truncate("abcdefg"))
	require.Equal(t, "ab", l.truncate("ab"))
}
