// Package httpclient builds the purchase request and sends it.
//
// [NewRequestBuilder] validates the configured method, target, headers and
// body once, before any attempt runs; [RequestBuilder.Build] then produces a
// fresh *http.Request per attempt. [Exchange] performs one round trip and
// returns the status code and (bounded) body for classification.
//
//	builder, err := httpclient.NewRequestBuilder(cfg)
//	if err != nil {
//		return err
//	}
//	client := httpclient.NewClientWithPool(cfg.Timeout, cfg.Concurrency)
//	req, err := builder.Build(ctx)
//	resp, err := httpclient.Exchange(client, req)
package httpclient
