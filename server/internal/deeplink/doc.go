// Package deeplink builds browseable URLs that open a stream's search view,
// optionally scoped to the event definition's query and the event time range.
//
// Build(stream, ectx, baseURL) returns a StreamLink. Without a base URL the
// link URL is Unknown ("<unknown>"). For aggregation definitions the URL
// carries ?q=<query>&rangetype=absolute&from=<start>&to=<end>, where start and
// end come from types.Event.SearchRange.
package deeplink
