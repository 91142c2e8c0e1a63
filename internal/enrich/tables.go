package enrich

// defaultTables returns the built-in classification rule tables. Labels
// and patterns track the published job board's vocabulary; tune via a
// YAML rules file rather than editing here.
func defaultTables() *Tables {
	return &Tables{
		Seniority:       seniorityRules(),
		Stage:           stageRules(),
		StageOverrides:  stageOverrideRules(),
		Industry:        industryRules(),
		Metro:           metroRules(),
		WorkArrangement: workArrangementRules(),
		Methodologies:   methodologyRules(),
		TechIndustries:  []string{"Software & SaaS", "Cybersecurity", "Fintech", "Data & AI"},
		GateVocabulary:  defaultGate(),
	}
}

func seniorityRules() RuleSet {
	return RuleSet{
		Default: "Other",
		Rules: []Rule{
			{Label: "C-Level", Any: []string{
				"chief revenue officer", "chief sales officer", "chief commercial officer",
				"chief growth officer", "chief business officer",
				" cro ", " cro,", " cso ", " cso,", " cco ", " cco,",
			}},
			{Label: "EVP", Any: []string{"executive vice president", " evp ", "evp,", "evp of"}},
			{Label: "SVP", Any: []string{"senior vice president", " svp ", "svp,", "svp of"}},
			{Label: "VP", Any: []string{"vice president", " vp ", "vp,", "vp of"}},
			{Label: "Head of", Any: []string{"head of"}},
		},
	}
}

func stageRules() RuleSet {
	return RuleSet{
		Default: "Unknown",
		Rules: []Rule{
			{Label: "Enterprise/Public", Any: []string{
				"publicly traded", "nyse:", "nasdaq:", "fortune 500", "fortune 100",
				"s&p 500", "public company",
			}},
			{Label: "Late Stage", Any: []string{"pre-ipo", "late stage", "late-stage", "series e", "series f"}},
			{Label: "Series C/D", Any: []string{"series c", "series d"}},
			{Label: "Series B/C", Any: []string{"series b"}},
			{Label: "Series A/B", Any: []string{"series a"}},
			{Label: "Seed/Series A", Any: []string{"seed stage", "seed-stage", "seed funding", "pre-seed"}},
		},
	}
}

// stageOverrideRules matches on the company name, ahead of the stage
// table. Acquired or well-funded companies whose descriptions read like a
// startup's land here. An empty default means no override.
func stageOverrideRules() RuleSet {
	return RuleSet{
		Rules: []Rule{
			{Label: "Enterprise/Public", Any: []string{"fieldwire", "chorus.ai", "duo security"}},
			{Label: "Series B/C", Any: []string{"zoe financial"}},
		},
	}
}

func industryRules() RuleSet {
	return RuleSet{
		Default: "Other",
		Rules: []Rule{
			{Label: "Cybersecurity", Any: []string{"cybersecurity", "cyber security", "infosec", "security platform"}},
			{Label: "Fintech", Any: []string{"fintech", "payments platform", "financial technology"}},
			{Label: "Data & AI", Any: []string{"artificial intelligence", "machine learning", " ai ", "data platform", "analytics platform"}},
			{Label: "Software & SaaS", Any: []string{"saas", "software as a service", "b2b software", "cloud platform", "software company", "enterprise software"}},
			{Label: "Healthcare", Any: []string{"healthcare", "health care", "medical device", "biotech", "pharma", "health tech", "healthtech"}},
			{Label: "Financial Services", Any: []string{"bank", "banking", "insurance", "wealth management", "asset management", "private equity"}},
			{Label: "Manufacturing & Industrial", Any: []string{"manufacturing", "industrial", "logistics", "supply chain"}},
			{Label: "Media & Advertising", Any: []string{"advertising", "adtech", "ad tech", "media company", "marketing platform"}},
			{Label: "Retail & Consumer", Any: []string{"retail", "e-commerce", "ecommerce", "consumer brand", "cpg"}},
		},
	}
}

func metroRules() RuleSet {
	return RuleSet{
		Default: "Other",
		Rules: []Rule{
			{Label: "Remote", Any: []string{"remote", "anywhere", "work from home", "united states"}},
			{Label: "San Francisco", Any: []string{
				"san francisco", "sf,", "bay area", "palo alto", "mountain view", "san jose",
				"oakland", "berkeley", "sunnyvale", "menlo park", "redwood city", "fremont", "santa clara",
			}},
			{Label: "New York", Any: []string{"new york", ", ny", "nyc", "manhattan", "brooklyn", "queens", "jersey city", "hoboken", "newark"}},
			{Label: "Los Angeles", Any: []string{"los angeles", "santa monica", "pasadena", "long beach", "burbank", "glendale", "irvine", "orange county"}},
			{Label: "Boston", Any: []string{"boston", "cambridge, ma", "somerville", "brookline", "quincy, ma"}},
			{Label: "Seattle", Any: []string{"seattle", "bellevue", "redmond", "kirkland, wa", "tacoma"}},
			{Label: "Chicago", Any: []string{"chicago", "evanston", "naperville", "oak brook"}},
			{Label: "Austin", Any: []string{"austin", "round rock", "cedar park"}},
			{Label: "Denver", Any: []string{"denver", "boulder", "aurora, co", "lakewood, co"}},
			{Label: "Atlanta", Any: []string{"atlanta", "marietta", "alpharetta", "sandy springs"}},
			{Label: "Miami", Any: []string{"miami", "fort lauderdale", "boca raton", "west palm"}},
			// Dallas and the rest of the state consolidate into one bucket.
			{Label: "Texas", Any: []string{"dallas", "fort worth", "plano", "irving", "frisco", "houston", ", tx", "texas"}},
		},
	}
}

func workArrangementRules() RuleSet {
	return RuleSet{
		Default: "Unknown",
		Rules: []Rule{
			{Label: "Remote", Any: []string{"remote", "work from home", "anywhere"}},
			{Label: "Hybrid", Any: []string{"hybrid"}},
			{Label: "Onsite", Any: []string{"on-site", "onsite", "on site", "in office", "in-office"}},
		},
	}
}

// methodologyRules flags sales methodologies and tooling named in the
// description. Unlike the dimensions above, every matching rule applies.
func methodologyRules() []Rule {
	return []Rule{
		{Label: "MEDDPICC", Any: []string{"meddpicc", "meddicc", "meddic"}},
		{Label: "Challenger", Any: []string{"challenger sale", "challenger methodology"}},
		{Label: "SPIN", Any: []string{"spin selling"}},
		{Label: "Sandler", Any: []string{"sandler"}},
		{Label: "Salesforce", Any: []string{"salesforce"}},
		{Label: "HubSpot", Any: []string{"hubspot"}},
		{Label: "Gong", Any: []string{"gong.io", " gong "}},
		{Label: "Outreach", Any: []string{"outreach.io"}},
		{Label: "Salesloft", Any: []string{"salesloft"}},
	}
}
