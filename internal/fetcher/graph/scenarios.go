package graph

type scenario struct {
	seed  string
	edges map[string][]string
}

var scenarios = map[string]scenario{
	// Four news.yahoo.com pages; the news.google.com link must be ignored.
	"example1": {
		seed: "http://news.yahoo.com/news/topics/",
		edges: map[string][]string{
			"http://news.yahoo.com/news/topics/": {
				"http://news.yahoo.com",
				"http://news.yahoo.com/news",
			},
			"http://news.yahoo.com": {
				"http://news.yahoo.com/us",
			},
			"http://news.yahoo.com/news": {
				"http://news.google.com",
				"http://news.yahoo.com/news/topics/",
			},
			"http://news.google.com": {
				"http://news.yahoo.com",
			},
			"http://news.yahoo.com/us": {},
		},
	},
	// Every link leaves the seed's host, so only the seed is returned.
	"example2": {
		seed: "http://news.google.com",
		edges: map[string][]string{
			"http://news.google.com": {
				"http://news.yahoo.com",
				"http://news.yahoo.com/news",
			},
			"http://news.yahoo.com": {
				"http://news.google.com",
				"http://news.yahoo.com/news/topics/",
			},
			"http://news.yahoo.com/news/topics/": {
				"http://news.yahoo.com",
				"http://news.yahoo.com/news",
			},
			"http://news.yahoo.com/news": {
				"http://news.google.com",
				"http://news.yahoo.com/news/topics/",
			},
		},
	},
}
