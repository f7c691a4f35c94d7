package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		want AssetKind
	}{
		{"a.ttf", KindFont},
		{"A.OTF", KindFont},
		{"fonts.ttc", KindFont},
		{"bgm.mp3", KindAudio},
		{"voice.m4a", KindAudio},
		{"E6AD8162.lic", KindLicense},
		{"index.m3u8", KindPlaylist},
		{"E6AD8162-1394.2.captionstyle", KindCaptionStyle},
		{"E6AD8162.1.compoundcaption", KindCompoundCaption},
		{"E6AD8162.animatedsticker", KindAnimatedSticker},
		{"E6AD8162.videotransition", KindVideoTransition},
		{"E6AD8162.videofx", KindVideoFx},
		{"E6AD8162.arscene", KindARScene},
		{"bundle.zip", KindPackage},
		{"", KindPackage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.name))
		})
	}
}

func TestIdentityOf(t *testing.T) {
	tests := []struct {
		name string
		kind AssetKind
		want string
	}{
		{"a.b.c.d.m3u8", KindPlaylist, "a.b.c"},
		{"a.m3u8", KindPlaylist, "a.m3u8"},
		{"E6AD8162.2.captionstyle", KindCaptionStyle, "E6AD8162"},
		{"font.ttf", KindFont, "font"},
		{"noext", KindPackage, "noext"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IdentityOf(tt.name, tt.kind), tt.name)
	}
}

func TestAssetRefIgnoresQuery(t *testing.T) {
	a := AssetRef{URL: "https://cdn.example.com/pkg/E6AD8162.2.videofx?v=1"}
	b := AssetRef{URL: "https://cdn.example.com/pkg/E6AD8162.2.videofx?v=2#top"}

	assert.Equal(t, "E6AD8162.2.videofx", a.FileName())
	assert.Equal(t, a.FileName(), b.FileName())
	assert.Equal(t, KindVideoFx, a.Kind())
	assert.Equal(t, a.Identity(), b.Identity())
	assert.Equal(t, "E6AD8162", a.Identity())

	assert.Equal(t, "f.ttf", AssetRef{URL: "f.ttf?x=1"}.FileName())

	custom := AssetRef{URL: "https://cdn.example.com/u/sticker.ttf", Custom: true}
	assert.Equal(t, KindCustom, custom.Kind())
}

func TestSecureURL(t *testing.T) {
	tests := map[string]string{
		"http://cdn.example.com/a.ttf":   "https://cdn.example.com/a.ttf",
		"HTTP://cdn.example.com/a.ttf":   "https://cdn.example.com/a.ttf",
		" http://cdn.example.com/a.ttf ": "https://cdn.example.com/a.ttf",
		"https://cdn.example.com/a.ttf":  "https://cdn.example.com/a.ttf",
		"ftp://cdn.example.com/a.ttf":    "ftp://cdn.example.com/a.ttf",
	}
	for in, want := range tests {
		assert.Equal(t, want, AssetRef{URL: in}.SecureURL(), in)
	}
}

func TestNeedsInstall(t *testing.T) {
	assert.True(t, KindCaptionStyle.NeedsInstall())
	assert.True(t, KindPackage.NeedsInstall())
	assert.False(t, KindFont.NeedsInstall())
	assert.False(t, KindPlaylist.NeedsInstall())
	assert.False(t, KindCustom.NeedsInstall())
	assert.True(t, AssetRef{URL: "   "}.IsEmpty())
}
