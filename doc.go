/*
hooptrack tracks players and the ball across the frames of a basketball
video and repairs the resulting trajectories so they can be rendered as
stable, continuous positions.

The root package holds the data model shared by all sub packages, the
capability interfaces used to plug in an object detector, a multi-object
tracker and an appearance classifier, plus the DetectionAdapter which runs
the detector over a frame sequence in bounded batches.

Sub packages:

	stub        durable cache of per-frame results
	tracking    player and ball track assignment
	trajectory  ball outlier rejection and gap filling
	team        team classification with a windowed memo
	tracker     ByteTrack multi-object tracker
	dnn         gocv DNN based detector
	preprocess  letterbox resizing of detector input
	postprocess YOLOv8 output decoding and NMS
	pipeline    wires everything together

See example code and usage in the example subdirectory.
*/
package hooptrack
