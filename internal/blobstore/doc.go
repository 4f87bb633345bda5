// Package blobstore serves bundles from object storage through
// gocloud.dev/blob.
//
// Bundles are addressed with bucket:// URIs whose host and path form the
// object key within the configured bucket:
//
//	bucket://releases/v2/prefabs  ->  key "releases/v2/prefabs"
//
// The bucket itself is opened from a gocloud URL. Drivers must be linked in
// by the caller:
//
//	import _ "gocloud.dev/blob/s3blob"
//
//	t, err := blobstore.OpenBucket(ctx, "s3://my-bundles?region=us-east-1")
//	router.Handle(t, blobstore.Scheme)
package blobstore
