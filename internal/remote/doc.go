// Package remote models the lifecycle of an asynchronous value.
//
// A Data[T] is always in exactly one of four states:
//
//	NotAsked -> Loading -> Success(T) | Failure(ErrorInfo)
//
// A new request from Success or Failure returns to Loading. Only an
// explicit Reset returns to NotAsked. Values are immutable; every
// transition returns a new Data.
package remote
