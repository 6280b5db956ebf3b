package validation

// Keyword lists for the eligibility rules. These are configuration data,
// not logic: deployments override them via config. Matching is plain
// lowercase substring containment, no stemming.

// Keywords bundles the vocabularies the validator matches against.
type Keywords struct {
	CostIndicators    []string
	FreeIndicators    []string
	RegionAllow       []string
	RegionDeny        []string
	Relevance         []string
	PrivateIndicators []string
}

// DefaultKeywords returns the Innsbruck deployment's vocabularies
// (German and English terms mixed, matching the newsletter corpus).
func DefaultKeywords() Keywords {
	return Keywords{
		CostIndicators: []string{
			"€", "eur", "euro",
			"kosten", "preis", "gebühr", "gebuehr",
			"ticket", "tickets", "eintritt",
			"teilnahmegebühr", "anmeldegebühr",
			"fee", "price", "cost", "admission", "paid",
		},
		FreeIndicators: []string{
			"kostenlos", "kostenfrei", "gratis",
			"eintritt frei", "freier eintritt", "kostenloser eintritt",
			"free", "no cost", "free of charge", "free entry", "free admission",
		},
		RegionAllow: []string{
			"innsbruck", "tirol", "tyrol",
			"hall in tirol", "wattens", "völs", "voels",
			"absam", "telfs", "schwaz", "kufstein", "wörgl", "woergl",
		},
		RegionDeny: []string{
			"wien", "vienna", "graz", "linz", "salzburg", "klagenfurt",
			"münchen", "munich", "zürich", "zurich", "berlin", "hamburg",
			"online-only", "online only", "nur online", "webinar", "virtual event",
		},
		Relevance: []string{
			"ki", "ai", "künstliche intelligenz", "kuenstliche intelligenz",
			"artificial intelligence", "machine learning", "maschinelles lernen",
			"deep learning", "llm", "chatgpt", "data science", "datenanalyse",
			"neural", "robotik", "robotics", "automation", "automatisierung",
			"digitalisierung", "tech", "startup",
		},
		// Bounded phrases only: bare stems like "privat" or "intern"
		// would match inside "private", "Internet" or "international".
		PrivateIndicators: []string{
			"nur für mitglieder", "nur fuer mitglieder", "members only",
			"mitglieder only", "geschlossene gesellschaft",
			"auf einladung", "invitation only", "invite only",
			"privatveranstaltung", "private veranstaltung", "private event",
			"nur intern", "interne veranstaltung", "internal only",
		},
	}
}
