package control

// emoteAliases maps human-readable emote names and ASCII shorthands to
// canonical emoji glyphs. The janken trio keeps both the English names and
// the Japanese gu/choki/pa shorthands older clients sent. Canonical glyphs
// map to themselves so re-normalization is a no-op.
var emoteAliases = map[string]string{
	"rock":     "✊",
	"gu":       "✊",
	"✊":        "✊",
	"scissors": "✌️",
	"choki":    "✌️",
	"✌":        "✌️",
	"✌️":       "✌️",
	"paper":    "✋",
	"pa":       "✋",
	"✋":        "✋",
	"wave":     "👋",
	"hello":    "👋",
	"heart":    "❤️",
	"love":     "❤️",
	"<3":       "❤️",
	"smile":    "😊",
	"happy":    "😊",
	":)":       "😊",
	"star":     "⭐",
	"music":    "🎵",
	"sparkle":  "✨",
}

// CanonicalEmote resolves an emote name, shorthand or glyph to its
// canonical glyph. Unrecognized inputs pass through unchanged: forwarding
// an unknown emote is better than dropping it.
func CanonicalEmote(name string) string {
	if glyph, ok := emoteAliases[name]; ok {
		return glyph
	}
	return name
}
