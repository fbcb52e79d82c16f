// Package hayabib manages Hayagriva bibliographies: collections of citation
// keys mapped to structured reference entries, validated against the
// published Hayagriva JSON Schema and round-tripped through YAML.
//
// Layout:
//
//   - hayabib (this package): the data model, error taxonomy and Issues.
//   - schema: the stale-while-revalidate schema cache.
//   - validate: compiles a schema document into validators and memoizes them.
//   - codec: YAML/JSON/TOML import, YAML/JSON/BibLaTeX export.
//   - store: the bibliography store over a pluggable keyed store (store/memkv, store/sqlkv).
//   - entries: entry-level operations inside a collection.
//
// Typical usage:
//
//	cache := schema.NewCache(schema.HTTPFetcher{}, schema.NewFilePersister(path))
//	reg := validate.NewRegistry(cache)
//	st := store.New(memkv.New(), reg)
//	svc := entries.New(st, reg)
//
//	m, err := codec.Deserialize(data)
//	err = st.Create(ctx, &hayabib.Collection{Metadata: meta, Entries: m})
//	e, err := svc.Get(ctx, "logic", "goedel1931")
package hayabib
