package emotion

import (
	"strings"
	"unicode"
)

// keywords maps each emotion category to its trigger words and emoji.
var keywords = map[Label][]string{
	Joy: {
		"happy", "happiness", "joy", "joyful", "glad", "excited", "exciting", "great",
		"wonderful", "amazing", "awesome", "love", "loved", "lovely", "delighted",
		"cheerful", "thrilled", "fantastic", "yay", "smile", "smiling", "laugh", "fun",
		"😊", "😀", "😃", "😄", "😁", "😂", "🥰", "😍", "❤", "🎉",
	},
	Sadness: {
		"sad", "unhappy", "depressed", "cry", "crying", "cried", "lonely", "miss",
		"heartbroken", "gloomy", "upset", "sorrow", "grief", "tears", "hopeless", "hurt",
		"😢", "😭", "😞", "😔", "💔", "☹",
	},
	Anger: {
		"angry", "mad", "furious", "annoyed", "irritated", "hate", "rage", "frustrated",
		"frustrating", "pissed", "outraged", "livid",
		"😠", "😡", "🤬",
	},
	Fear: {
		"afraid", "scared", "fear", "anxious", "worried", "worry", "nervous", "terrified",
		"panic", "frightened", "dread", "uneasy",
		"😨", "😰", "😱",
	},
	Surprise: {
		"surprised", "surprise", "wow", "shocked", "amazed", "unexpected", "astonished",
		"whoa", "omg", "unbelievable",
		"😮", "😲", "😯",
	},
	Disgust: {
		"disgusted", "disgusting", "gross", "yuck", "nasty", "revolting", "eww", "vile",
		"🤢", "🤮",
	},
}

var lexicon = buildLexicon()

func buildLexicon() map[string]Label {
	m := make(map[string]Label)
	for label, words := range keywords {
		for _, w := range words {
			m[w] = label
		}
	}
	return m
}

// tokenize splits text into lowercase words and single symbol runes.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := make([]string, 0, len(text)/4)
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			current.WriteRune(r)
		case unicode.Is(unicode.So, r):
			flush()
			tokens = append(tokens, string(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// AnalyzeText derives an emotional reading from text. The timestamp is left
// zero; it is stamped when the reading is applied to a Tracker.
func AnalyzeText(text string) State {
	counts := make(map[Label]int, len(keywords))
	total := 0
	for _, token := range tokenize(text) {
		if label, ok := lexicon[token]; ok {
			counts[label]++
			total++
		}
	}

	primary := Neutral
	best := 0
	for _, label := range Priority {
		if counts[label] > best {
			primary, best = label, counts[label]
		}
	}

	var secondary []Label
	for _, label := range Priority {
		if label != primary && counts[label] > 0 {
			secondary = append(secondary, label)
		}
	}

	v, a, d := primary.Dimensions()
	return State{
		Primary:   primary,
		Secondary: secondary,
		Intensity: clamp(float64(total)/10, 0.1, 1),
		Valence:   v,
		Arousal:   a,
		Dominance: d,
	}
}
