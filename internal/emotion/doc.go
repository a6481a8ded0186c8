// Package emotion defines the facial-emotion vocabulary and the contract
// moodreel consumes from an external classifier.
//
// Classifiers return zero or more faces per frame, each carrying an ordered
// list of label scores. Order matters: when two labels share the maximum
// score the first one wins, so Scores decodes JSON objects without losing key
// order.
package emotion
