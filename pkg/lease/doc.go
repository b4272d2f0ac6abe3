// Package lease provides a Redis-backed distributed lease used to keep
// periodic work such as the queue tick on a single instance at a time.
//
// A lease is a key set with SET NX PX holding a random token. Release
// deletes the key only while it still holds the caller's token, so an
// instance whose lease expired cannot drop a lease held by another.
//
//	locker := lease.NewRedisLocker(rdb)
//	release, ok, err := locker.TryLock(ctx, "courier:queue:process", 5*time.Minute)
//	if err != nil || !ok {
//	    return
//	}
//	defer release(context.Background())
//
// RedisLocker satisfies queue.Locker.
package lease
