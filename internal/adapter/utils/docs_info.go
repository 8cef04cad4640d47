// Package utils holds the chi router and small request helpers shared by the handlers.
//
// Local dependencies for the optional backends:
//
//	docker run -p 6379:6379 -d redis
//	docker run -p 6333:6333 -p 6334:6334 -v vectorDBData:/qdrant/storage qdrant/qdrant
//	docker run -p 9000:9000 -p 9001:9001 minio/minio server /data --console-address ":9001"
//
// Swagger docs are generated from the handler annotations:
//
//	swag init -g cmd/api/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/api/docs
package utils
