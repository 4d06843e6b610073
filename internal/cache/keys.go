package cache

import "fmt"

func BatchRecordKey(batchID string) string {
	return fmt.Sprintf("batch:record:%s", batchID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
