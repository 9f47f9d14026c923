// Package multipart reassembles stories that were uploaded as several
// sequential chunks.
//
// Group builds the ordered chunk groups of a pass. A Combiner then joins each
// group with ffmpeg, by raw byte concatenation for container formats that
// allow it, or writes a bash script that performs the ffmpeg call later.
package multipart
