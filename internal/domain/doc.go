// Package domain models crowd-verified road hazards.
//
// # Data Source
//
// Hazard reports originate from an on-device detection model running on
// mobile clients. Each client publishes detections as flat JSON to the
// source topic (or posts them to the HTTP boundary): one message per
// detected hazard, carrying the predicted class, the model's confidence,
// the image-space bounding box, and the device's GPS fix at capture time.
//
// # Hazard Classes
//
// The detection model is trained on four road-surface classes:
//
//	Pothole      structural pavement failure       base severity: high
//	SpeedBreaker unmarked or damaged speed bump    base severity: medium
//	Debris       foreign object on the roadway     base severity: critical
//	RoadCrack    surface cracking, early failure   base severity: low
//
// Unknown classes default to medium severity. A detection confidence above
// 0.8 escalates the base severity one level (critical is the ceiling),
// since a near-certain detection of any class warrants more attention.
// See [SeverityFor].
//
// # Verification Lifecycle
//
// A hazard starts UNVERIFIED. Users near the reported location confirm,
// deny, or resolve it; accumulated feedback drives the status machine
// (VERIFIED, DISPUTED, RESOLVED) and the blended confidence score. A
// hazard that collects no confirmations before its expiry deadline is
// swept as EXPIRED. The state transitions themselves live in the engine
// package; this package holds the records they operate on.
//
// # Geospatial Conventions
//
// Coordinates are WGS-84 decimal degrees. All distances are great-circle
// meters computed with the haversine formula ([Geo.DistanceMeters]); at
// the radii involved (tens to hundreds of meters) the spherical
// approximation error is far below GPS accuracy.
package domain
