package tokenizer

var englishStopwords = []string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and",
	"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "could", "did", "do", "does", "doing",
	"down", "during", "each", "few", "for", "from", "further", "had", "has", "have",
	"having", "he", "her", "here", "hers", "herself", "him", "himself", "his", "how",
	"i", "if", "in", "into", "is", "it", "its", "itself", "just", "me", "more",
	"most", "my", "myself", "no", "nor", "not", "now", "of", "off", "on", "once",
	"only", "or", "other", "our", "ours", "ourselves", "out", "over", "own", "same",
	"she", "should", "so", "some", "such", "than", "that", "the", "their", "theirs",
	"them", "themselves", "then", "there", "these", "they", "this", "those",
	"through", "to", "too", "under", "until", "up", "very", "was", "we", "were",
	"what", "when", "where", "which", "while", "who", "whom", "why", "will", "with",
	"would", "you", "your", "yours", "yourself", "yourselves",
}

var polishStopwords = []string{
	"a", "aby", "ale", "bardzo", "bez", "bo", "być", "był", "była", "było", "były",
	"będzie", "ci", "co", "czy", "dla", "do", "gdy", "gdzie", "i", "ich", "ja",
	"jak", "jako", "je", "jego", "jej", "jest", "jestem", "jeszcze", "już",
	"każdy", "kiedy", "kto", "która", "które", "który", "ma", "mi", "mnie", "mój",
	"na", "nad", "nam", "nas", "nie", "niż", "o", "od", "oraz", "po", "pod", "przez",
	"przy", "się", "są", "ta", "tak", "także", "tam", "te", "tego", "tej",
	"ten", "to", "tu", "tylko", "tym", "u", "w", "we", "więc", "z", "za", "że",
}
