package extract

// maxTopics caps how many retrieval topics one event can produce.
const maxTopics = 3

// DeriveTopics maps a merged FactSet to an ordered list of retrieval
// topics. Rules fire in fixed priority order and every firing rule keeps
// its slot; "General" is the fallback when nothing fires. The result is
// capped at maxTopics and downstream retrieval uses only that prefix.
func DeriveTopics(f FactSet) []string {
	var topics []string
	if len(f.Entities.URLs) > 0 || len(f.Entities.Domains) > 0 {
		topics = append(topics, "Web")
	}
	if len(f.Entities.IPs) > 0 || len(f.Artifacts.Ports) > 0 {
		topics = append(topics, "Network")
	}
	if len(f.Vulns.CVEs) > 0 {
		topics = append(topics, "Vulnerabilities")
	}
	if len(f.Creds.Pairs) > 0 || len(f.Creds.Passwords) > 0 {
		topics = append(topics, "Credentials")
	}
	if len(topics) == 0 {
		topics = append(topics, "General")
	}
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics
}
