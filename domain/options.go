package domain

// FindOptions configure a read: projection, sort, skip and limit. Projection
// and Sort accept any decodable shape (doc.M, map, struct or the native
// types); the cursor spec builder decodes them.
type FindOptions struct {
	Projection any
	Sort       any
	Skip       int64
	Limit      int64
}

// FindOption configures a read through the functional options pattern.
type FindOption func(*FindOptions)

// WithProjection specifies which fields the results should carry.
func WithProjection(p any) FindOption {
	return func(o *FindOptions) { o.Projection = p }
}

// WithSort specifies the order of the results.
func WithSort(s any) FindOption {
	return func(o *FindOptions) { o.Sort = s }
}

// WithSkip drops the first n results.
func WithSkip(n int64) FindOption {
	return func(o *FindOptions) { o.Skip = n }
}

// WithLimit caps the number of results; zero means unbounded.
func WithLimit(n int64) FindOption {
	return func(o *FindOptions) { o.Limit = n }
}

// UpdateOptions configure UpdateOne and UpdateAll.
type UpdateOptions struct {
	Projection any
	Sort       any
	Upsert     bool
}

// UpdateOption configures an update through the functional options pattern.
type UpdateOption func(*UpdateOptions)

// WithUpsert inserts a new document when the query matches nothing.
func WithUpsert(u bool) UpdateOption {
	return func(o *UpdateOptions) { o.Upsert = u }
}

// WithUpdateProjection specifies which fields the returned documents carry.
func WithUpdateProjection(p any) UpdateOption {
	return func(o *UpdateOptions) { o.Projection = p }
}

// WithUpdateSort specifies the order used to snapshot and return the
// affected documents.
func WithUpdateSort(s any) UpdateOption {
	return func(o *UpdateOptions) { o.Sort = s }
}

// CollectionOptions configure a collection handle.
type CollectionOptions struct {
	IDGenerator IDGenerator
	Decoder     Decoder
	Setup       SetupFunc
}

// CollectionOption configures a collection handle through the functional
// options pattern.
type CollectionOption func(*CollectionOptions)

// WithIDGenerator sets the application identifier generator.
func WithIDGenerator(g IDGenerator) CollectionOption {
	return func(o *CollectionOptions) { o.IDGenerator = g }
}

// WithDecoder sets the decoder used for projection and sort shapes.
func WithDecoder(d Decoder) CollectionOption {
	return func(o *CollectionOptions) { o.Decoder = d }
}

// WithSetup registers a setup strategy run once during the handle's lazy
// initialization, after the default hooks are in place.
func WithSetup(s SetupFunc) CollectionOption {
	return func(o *CollectionOptions) { o.Setup = s }
}
