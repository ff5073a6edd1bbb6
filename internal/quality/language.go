package quality

import "strings"

// Stopword sets for the languages regional sources publish in. Words unique
// to each language are weighted over shared ones by simple set membership:
// a word in two sets scores both, and the ratios decide.
var stopwords = map[string][]string{
	"pt": {
		"de", "que", "não", "nao", "uma", "para", "com", "está", "esta",
		"são", "sao", "como", "mas", "foi", "ele", "ela", "seu", "sua",
		"ou", "quando", "muito", "já", "também", "tambem", "pelo", "pela",
		"até", "ate", "isso", "entre", "depois", "sem", "mesmo", "aos",
		"nos", "das", "dos", "ao", "em", "um", "os", "as", "do", "da", "na", "no",
	},
	"es": {
		"el", "la", "los", "las", "que", "de", "en", "un", "una", "por",
		"con", "para", "es", "está", "esta", "son", "como", "pero", "fue",
		"él", "ella", "su", "sus", "o", "cuando", "muy", "ya", "también",
		"hasta", "eso", "entre", "después", "sin", "mismo", "y", "del", "al",
	},
	"en": {
		"the", "of", "and", "to", "in", "is", "was", "that", "for", "it",
		"with", "as", "his", "her", "on", "at", "by", "this", "had", "not",
		"are", "but", "from", "or", "have", "an", "they", "which", "one",
		"been", "were", "she", "he", "has", "when", "who", "will", "more",
	},
}

// minSignalWords is the minimum number of stopword hits needed before a
// verdict is returned; below it the detector stays silent rather than guess.
const minSignalWords = 5

// DetectLanguage returns a best-effort ISO code for the text's language, or
// an empty string when the text carries too little signal to judge.
func DetectLanguage(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return ""
	}

	sets := make(map[string]map[string]struct{}, len(stopwords))
	for lang, list := range stopwords {
		set := make(map[string]struct{}, len(list))
		for _, w := range list {
			set[w] = struct{}{}
		}
		sets[lang] = set
	}

	scores := make(map[string]int, len(stopwords))
	for _, word := range words {
		word = strings.Trim(word, ".,;:!?\"'()[]«»")
		for lang, set := range sets {
			if _, ok := set[word]; ok {
				scores[lang]++
			}
		}
	}

	best, bestScore := "", 0
	for lang, score := range scores {
		if score > bestScore || (score == bestScore && lang < best) {
			best, bestScore = lang, score
		}
	}
	if bestScore < minSignalWords {
		return ""
	}
	return best
}
