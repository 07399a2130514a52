package sanitize

// Banned-term lists, grouped by category. Both lists compile into one
// case-insensitive alternation that replaces every hit with the mask
// token. Extend per category; order is not significant because every
// hit maps to the same mask.

var bannedTermsZH = []string{
	// political
	"颠覆国家", "政变",
	// violent
	"杀人", "爆炸物", "枪支", "买凶",
	// adult
	"色情", "援交", "嫖娼",
	// narcotics
	"毒品", "冰毒", "大麻", "吸毒",
	// gambling
	"赌博", "博彩", "赌场", "六合彩",
	// fraud
	"诈骗", "洗钱", "刷单", "套现",
	// hate speech
	"仇恨言论",
	// other illegal
	"走私", "假证", "代考",
}

var bannedTermsEN = []string{
	// political
	"coup d'etat",
	// violent
	"hitman", "explosives",
	// adult
	"escort service",
	// narcotics
	"narcotics", "methamphetamine", "cocaine", "heroin",
	// gambling
	"casino bonus", "betting odds", "gambling",
	// fraud
	"money laundering", "ponzi", "phishing",
	// hate speech
	"hate speech",
	// other illegal
	"smuggling", "fake id",
}
