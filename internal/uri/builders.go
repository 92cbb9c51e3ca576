package uri

// Account returns mutable://accounts/{pubkey}/{path...}.
func Account(pubkey string, path ...string) Address {
	return Address{scheme: SchemeMutable, domain: DomainAccounts, path: pubkey}.Child(path...)
}

// Self returns mutable://accounts/:key/{path...}.
func Self(path ...string) Template {
	return Account(Placeholder, path...).Template()
}

func NotebookMeta(notebook string) Address { return Account(notebook, "meta") }

func Posts(notebook string) Address { return Account(notebook, "posts") }

func Post(notebook, post string) Address { return Account(notebook, "posts", post) }

func Reactions(notebook, post string) Address {
	return Account(notebook, "posts", post, "reactions")
}

func Reaction(notebook, post, id string) Address {
	return Account(notebook, "posts", post, "reactions", id)
}

// PublicNotebooks is the app-owned discovery index container.
func PublicNotebooks(app string) Address { return Account(app, "public-notebooks") }

func PublicNotebookEntry(app, notebook string) Address {
	return Account(app, "public-notebooks", notebook)
}

// UserNotebooksIndex is the signed-in user's consolidated index record.
func UserNotebooksIndex() Template { return Self("notebooks-index") }

func UserProfile() Template { return Self("profile") }
