package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_TextNormalization(t *testing.T) {
	variants := []string{
		"Hello   World",
		"hello world",
		" HELLO\tworld ",
		"hello\n\nworld",
	}

	base, kind, ok := Descriptor{Text: variants[0]}.Fingerprint()
	require.True(t, ok)
	assert.Equal(t, KindText, kind)

	for _, v := range variants[1:] {
		fp, _, ok := Descriptor{Text: v}.Fingerprint()
		require.True(t, ok)
		assert.Equal(t, base, fp, "variant %q", v)
	}
}

func TestFingerprint_KnownTextDigest(t *testing.T) {
	// sha256 of "text:hello world".
	fp, kind, ok := Descriptor{Text: "Hello   World"}.Fingerprint()
	require.True(t, ok)
	assert.Equal(t, KindText, kind)
	assert.Equal(t, Fingerprint("1b5e019ac95efa328c17ceaf33b02fa94b8c21e7d7ed3c33b517eefd2c62c743"), fp)
}

func TestFingerprint_KnownMixedDigest(t *testing.T) {
	// sha256 of "photo:AQADBAAD|size:2048|text:look at this", parts sorted.
	d := Descriptor{
		Text:  "Look at this",
		Media: []MediaRef{Photo{UniqueID: "AQADBAAD", Size: 2048}},
	}
	fp, kind, ok := d.Fingerprint()
	require.True(t, ok)
	assert.Equal(t, KindPhoto, kind)
	assert.Equal(t, Fingerprint("e4315bb6b778d1255831587a63829bde9d39e50dbf3d4673696b4eb0b2613574"), fp)
}

func TestFingerprint_EmptyDescriptor(t *testing.T) {
	fp, kind, ok := Descriptor{}.Fingerprint()
	assert.False(t, ok)
	assert.Equal(t, Fingerprint(""), fp)
	assert.Equal(t, ContentKind(""), kind)
}

func TestFingerprint_WhitespaceOnlyText(t *testing.T) {
	a, _, okA := Descriptor{Text: "   "}.Fingerprint()
	b, _, okB := Descriptor{Text: "\t\n"}.Fingerprint()
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a, b)
}

func TestFingerprint_CaptionDistinctFromText(t *testing.T) {
	text, _, _ := Descriptor{Text: "same words"}.Fingerprint()
	caption, _, ok := Descriptor{
		Caption: "same words",
		Media:   []MediaRef{Photo{UniqueID: "x"}},
	}.Fingerprint()
	require.True(t, ok)
	assert.NotEqual(t, text, caption)
}

func TestFingerprint_MediaOrderIrrelevant(t *testing.T) {
	first := Descriptor{Media: []MediaRef{
		Photo{UniqueID: "aaa", Size: 10},
		Photo{UniqueID: "bbb", Size: 20},
	}}
	second := Descriptor{Media: []MediaRef{
		Photo{UniqueID: "bbb", Size: 20},
		Photo{UniqueID: "aaa", Size: 10},
	}}

	a, _, okA := first.Fingerprint()
	b, _, okB := second.Fingerprint()
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a, b)
}

func TestFingerprint_KindPerMedia(t *testing.T) {
	cases := []struct {
		ref  MediaRef
		kind ContentKind
	}{
		{Photo{UniqueID: "u"}, KindPhoto},
		{Document{UniqueID: "u"}, KindDocument},
		{Video{UniqueID: "u"}, KindVideo},
		{Audio{UniqueID: "u"}, KindAudio},
		{Voice{UniqueID: "u"}, KindVoice},
		{VideoNote{UniqueID: "u"}, KindVideoNote},
		{Sticker{UniqueID: "u"}, KindSticker},
		{Animation{UniqueID: "u"}, KindAnimation},
	}

	for _, tc := range cases {
		_, kind, ok := Descriptor{Media: []MediaRef{tc.ref}}.Fingerprint()
		require.True(t, ok)
		assert.Equal(t, tc.kind, kind)
	}
}

func TestFingerprint_DistinctContentDistinctDigest(t *testing.T) {
	photo, _, _ := Descriptor{Media: []MediaRef{Photo{UniqueID: "shared"}}}.Fingerprint()
	document, _, _ := Descriptor{Media: []MediaRef{Document{UniqueID: "shared"}}}.Fingerprint()
	assert.NotEqual(t, photo, document, "same id under different kinds must differ")

	small, _, _ := Descriptor{Media: []MediaRef{Photo{UniqueID: "p"}}}.Fingerprint()
	large, _, _ := Descriptor{Media: []MediaRef{Photo{UniqueID: "p", Size: 2048}}}.Fingerprint()
	assert.NotEqual(t, small, large, "size participates in the fingerprint")

	seen := make(map[Fingerprint]string, 100000)
	for i := 0; i < 100000; i++ {
		text := fmt.Sprintf("message number %d", i)
		fp, _, ok := Descriptor{Text: text}.Fingerprint()
		require.True(t, ok)
		if prev, dup := seen[fp]; dup {
			t.Fatalf("collision between %q and %q", prev, text)
		}
		seen[fp] = text
	}
}

func TestFingerprint_FilenameCaseInsensitive(t *testing.T) {
	upper, _, _ := Descriptor{Media: []MediaRef{Document{UniqueID: "d", Filename: "Report.PDF"}}}.Fingerprint()
	lower, _, _ := Descriptor{Media: []MediaRef{Document{UniqueID: "d", Filename: "report.pdf"}}}.Fingerprint()
	other, _, _ := Descriptor{Media: []MediaRef{Document{UniqueID: "d", Filename: "notes.pdf"}}}.Fingerprint()

	assert.Equal(t, upper, lower)
	assert.NotEqual(t, upper, other)
}
