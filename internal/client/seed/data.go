package seed

// Demo is the dataset used by "firecat seed".
var Demo = Dataset{
	Users: []User{
		{Username: "alice", Password: "alice-demo-pass", Name: "Alice Ng", Bio: "Reads papers, writes code."},
		{Username: "bob", Password: "bob-demo-pass", Name: "Bob Ortega", Bio: "Runs too many servers at home."},
		{Username: "carol", Password: "carol-demo-pass", Name: "Carol Weiss", Bio: "Film cameras and long walks."},
	},
	Notebooks: []Notebook{
		{
			Owner:       "alice",
			Title:       "Paper Trail",
			Description: "Short notes on the papers I read this year",
			Posts: []string{
				"Finished the Raft paper again. Leader election is the easy part; log compaction is where the bugs hide.",
				"Bloom filters in LSM trees: a few bits per key buy you most of the read amplification back.",
				"Vector clocks tell you that two writes conflict, never which one should win.",
			},
		},
		{
			Owner:       "alice",
			Title:       "Go Scratchpad",
			Description: "Snippets and gotchas from day-to-day Go",
			Posts: []string{
				"Loop variables are per-iteration since 1.22. Deleted a dozen `x := x` lines today.",
				"errors.Join is great for validation: collect everything, return once.",
				"Remember to close response bodies even when you do not read them.",
			},
		},
		{
			Owner:       "bob",
			Title:       "Rack Notes",
			Description: "What broke in the home lab this week",
			Posts: []string{
				"Replaced the UPS battery. The self-test had been failing silently for a month.",
				"Moved backups to a second disk with a nightly rsync. Restores tested, not just backups.",
				"DNS was the problem. DNS is always the problem.",
			},
		},
		{
			Owner:       "carol",
			Title:       "Contact Sheets",
			Description: "Notes from the darkroom and the street",
			Posts: []string{
				"Pushed a roll of 400 to 1600. Grain everywhere, and I love it.",
				"Morning fog made the bridge look unfinished. Three frames worth keeping.",
			},
		},
	},
}
