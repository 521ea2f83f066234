package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract_MixedTextPreservesOrder(t *testing.T) {
	t.Parallel()

	got := Extract("check out example.com/a and http://b.com/c, thanks")
	require.Equal(t, []string{"https://example.com/a", "http://b.com/c"}, got)
}

func TestExtract_Idempotent(t *testing.T) {
	t.Parallel()

	first := Extract("check out example.com/a and http://b.com/c, thanks")
	again := Extract(joinSpace(first))
	require.Equal(t, first, again)
}

func TestExtract_SchemeVariants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "explicit scheme with query",
			in:   "mixed text with https://example.com/path?query=1&test=2 in the middle",
			want: []string{"https://example.com/path?query=1&test=2"},
		},
		{
			name: "www without scheme",
			in:   "see www.example.co.jp/article/123 today",
			want: []string{"https://www.example.co.jp/article/123"},
		},
		{
			name: "short link hosts",
			in:   "Short link: bit.ly/abc123 and another one t.co/xyz789",
			want: []string{"https://bit.ly/abc123", "https://t.co/xyz789"},
		},
		{
			name: "bare domain with allow-listed tld",
			in:   "Visit example.com for more info",
			want: []string{"https://example.com"},
		},
		{
			name: "parentheses and quotes",
			in:   "Parentheses (https://www.example.org) and quotes 'www.test.com'",
			want: []string{"https://www.example.org", "https://www.test.com"},
		},
		{
			name: "youtube short link",
			in:   "watch youtu.be/dQw4w9WgXcQ now",
			want: []string{"https://youtu.be/dQw4w9WgXcQ"},
		},
		{
			name: "duplicates collapse to first occurrence",
			in:   "https://x.com/a then again https://x.com/a and https://y.com/b",
			want: []string{"https://x.com/a", "https://y.com/b"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Extract(tc.in))
		})
	}
}

func TestExtract_NoFalsePositives(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"",
		"no links here",
		"i.e. this sentence, with dots. and commas",
		"version 1.2.3 released",
		"/help",
	} {
		require.Empty(t, Extract(in), "input %q", in)
	}
}

func TestExtract_TrailingPunctuationStripped(t *testing.T) {
	t.Parallel()

	got := Extract("read https://example.com/post.")
	require.Equal(t, []string{"https://example.com/post"}, got)

	got = Extract("lists: example.com/a, example.com/b; done")
	require.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, got)
}

func joinSpace(urls []string) string {
	out := ""
	for i, u := range urls {
		if i > 0 {
			out += " "
		}
		out += u
	}
	return out
}
