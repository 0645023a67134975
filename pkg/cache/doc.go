// Package cache remembers lookup results for the duration of one run so
// that an identifier repeated in the input is only requested once.
//
// Nothing is persisted: the memo lives in process memory and is discarded
// when the run ends.
//
//	memo := cache.NewMemo()
//	if res, ok := memo.Get(req); ok {
//		return res
//	}
//	res := client.Lookup(ctx, req)
//	memo.Set(req, res)
package cache
