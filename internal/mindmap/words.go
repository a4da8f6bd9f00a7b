package mindmap

// category is a named topic bucket. Tokens are filed under the first
// category, in categories order, whose keyword list contains them.
type category struct {
	name     string
	keywords []string
}

var categories = []category{
	{"Data", []string{
		"database", "query", "table", "schema", "index", "record", "sql", "relation", "relational",
		"transaction", "storage", "column", "row", "tuple", "key", "normalization", "join", "dbms",
	}},
	{"Algorithms", []string{
		"algorithm", "sorting", "search", "graph", "tree", "complexity", "recursion", "heap", "hash",
		"queue", "stack", "array", "list", "traversal", "greedy", "dynamic", "binary",
	}},
	{"Programming", []string{
		"function", "variable", "class", "object", "loop", "pointer", "compiler", "syntax", "method",
		"inheritance", "interface", "exception", "module", "package", "runtime", "debugging",
	}},
	{"Systems", []string{
		"process", "thread", "memory", "kernel", "scheduling", "cache", "file", "disk", "deadlock",
		"paging", "concurrency", "synchronization", "operating", "virtualization", "cpu",
	}},
	{"Networking", []string{
		"network", "protocol", "packet", "router", "tcp", "udp", "http", "socket", "bandwidth",
		"latency", "routing", "ethernet", "dns", "server", "client",
	}},
	{"Security", []string{
		"security", "encryption", "authentication", "authorization", "attack", "vulnerability",
		"firewall", "cipher", "malware", "certificate", "privacy", "password",
	}},
	{"Machine Learning", []string{
		"learning", "training", "neural", "regression", "classification", "dataset", "feature",
		"clustering", "prediction", "accuracy", "gradient", "embedding",
	}},
	{"Mathematics", []string{
		"equation", "matrix", "vector", "probability", "theorem", "integral", "derivative",
		"proof", "set", "statistics", "calculus", "algebra", "logic",
	}},
	{"Science", []string{
		"energy", "cell", "molecule", "atom", "force", "reaction", "organism", "evolution",
		"gene", "physics", "chemistry", "biology",
	}},
	{"Business", []string{
		"market", "management", "finance", "customer", "strategy", "marketing", "revenue",
		"accounting", "economics", "product", "organization",
	}},
}

var stopwords = toSet(
	"about", "above", "after", "again", "against", "all", "also", "among", "and", "any", "are",
	"because", "been", "before", "being", "below", "between", "both", "but", "can", "could",
	"did", "does", "doing", "down", "during", "each", "either", "etc", "even", "every", "few",
	"for", "from", "further", "had", "has", "have", "having", "her", "here", "hers", "him", "his",
	"how", "however", "into", "its", "itself", "just", "let", "like", "may", "might", "more",
	"most", "much", "must", "not", "now", "off", "once", "one", "only", "other", "our", "ours",
	"out", "over", "own", "same", "shall", "she", "should", "since", "some", "such", "than",
	"that", "the", "their", "theirs", "them", "then", "there", "these", "they", "this", "those",
	"through", "thus", "too", "two", "under", "until", "upon", "use", "used", "using", "very",
	"was", "way", "were", "what", "when", "where", "whether", "which", "while", "who", "whom",
	"why", "will", "with", "within", "without", "would", "yet", "you", "your", "yours",
)

// genericWords are domain-agnostic nouns that say nothing about a topic.
var genericWords = toSet(
	"thing", "example", "part", "type", "kind", "way", "case", "number", "value", "result",
	"system", "information", "data", "point", "form", "level", "step", "use", "item", "section",
	"chapter", "unit", "page", "figure", "topic", "introduction", "summary", "note", "lecture",
	"following", "given", "various", "different", "important", "basic", "general", "called",
	"known", "make", "makes", "made", "many", "new", "first", "second", "third", "well",
)

// plurals maps known plural forms to their singular.
var plurals = map[string]string{
	"databases":       "database",
	"queries":         "query",
	"tables":          "table",
	"schemas":         "schema",
	"schemata":        "schema",
	"indexes":         "index",
	"indices":         "index",
	"records":         "record",
	"relations":       "relation",
	"transactions":    "transaction",
	"columns":         "column",
	"rows":            "row",
	"tuples":          "tuple",
	"keys":            "key",
	"joins":           "join",
	"algorithms":      "algorithm",
	"graphs":          "graph",
	"trees":           "tree",
	"heaps":           "heap",
	"queues":          "queue",
	"stacks":          "stack",
	"arrays":          "array",
	"lists":           "list",
	"functions":       "function",
	"variables":       "variable",
	"classes":         "class",
	"objects":         "object",
	"loops":           "loop",
	"pointers":        "pointer",
	"compilers":       "compiler",
	"methods":         "method",
	"interfaces":      "interface",
	"exceptions":      "exception",
	"modules":         "module",
	"packages":        "package",
	"processes":       "process",
	"threads":         "thread",
	"caches":          "cache",
	"files":           "file",
	"disks":           "disk",
	"deadlocks":       "deadlock",
	"networks":        "network",
	"protocols":       "protocol",
	"packets":         "packet",
	"routers":         "router",
	"sockets":         "socket",
	"servers":         "server",
	"clients":         "client",
	"attacks":         "attack",
	"vulnerabilities": "vulnerability",
	"ciphers":         "cipher",
	"certificates":    "certificate",
	"passwords":       "password",
	"features":        "feature",
	"datasets":        "dataset",
	"predictions":     "prediction",
	"gradients":       "gradient",
	"embeddings":      "embedding",
	"equations":       "equation",
	"matrices":        "matrix",
	"vectors":         "vector",
	"theorems":        "theorem",
	"integrals":       "integral",
	"derivatives":     "derivative",
	"proofs":          "proof",
	"sets":            "set",
	"cells":           "cell",
	"molecules":       "molecule",
	"atoms":           "atom",
	"forces":          "force",
	"reactions":       "reaction",
	"organisms":       "organism",
	"genes":           "gene",
	"markets":         "market",
	"customers":       "customer",
	"strategies":      "strategy",
	"products":        "product",
	"organizations":   "organization",
	"things":          "thing",
	"examples":        "example",
	"parts":           "part",
	"types":           "type",
	"kinds":           "kind",
	"cases":           "case",
	"numbers":         "number",
	"values":          "value",
	"results":         "result",
	"systems":         "system",
	"points":          "point",
	"forms":           "form",
	"levels":          "level",
	"steps":           "step",
	"items":           "item",
	"sections":        "section",
	"chapters":        "chapter",
	"units":           "unit",
	"pages":           "page",
	"figures":         "figure",
	"topics":          "topic",
	"notes":           "note",
	"lectures":        "lecture",
}

var categoryKeywords = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, c := range categories {
		for _, k := range c.keywords {
			m[k] = struct{}{}
		}
	}
	return m
}()

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
