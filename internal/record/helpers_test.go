package record

// sampleRecord builds an article that references one taxonomy term and has
// a French translation.
func sampleRecord() *SerializedRecord {
	r := New("node", "article", "a1b2", "en")
	r.DisplayLabel = "Hello"
	r.EntityID = 7
	r.Path = "node/article/a1b2.yml"
	r.AddDependency("t1", "taxonomy_term")
	r.Default = Fields{
		"title":      {{"value": "Hello"}},
		"field_tags": {{"target_uuid": "t1", "target_type": "taxonomy_term"}},
	}
	r.SetTranslation("fr", Fields{"title": {{"value": "Bonjour"}}})
	return r
}
