// SPDX-License-Identifier: MIT

/*
Package xisf reads and writes XISF 1.0 units: the image interchange
format used by PixInsight and related astronomical imaging tools.

An XISF unit carries one or more multidimensional pixel arrays plus
metadata (properties, FITS keywords, color management, thumbnails,
resolution, CFA patterns). A unit is stored either monolithically, as a
single ".xisf" file with an XML header followed by attached pixel data,
or in distributed form, as an ".xish" XML header file referencing
external ".xisb" data-block files.

# Reading

Read a monolithic or distributed unit without knowing its shape ahead
of time; any io.ReaderAt + io.Seeker carrier works, such as an *os.File:

	f, err := os.Open("frame.xisf")
	if err != nil {
	    return err
	}
	defer f.Close()

	u, err := xisf.Read(context.Background(), f, xisf.ReaderOptions{})
	if err != nil {
	    return err
	}
	for _, img := range u.Images {
	    _ = img.Geometry
	}

For metadata-only inspection, skip pixel data entirely:

	hdr, err := xisf.ReadHeader(context.Background(), f, xisf.ReaderOptions{})
	if err != nil {
	    return err
	}
	_ = hdr.Header.Metadata.CreatorApplication

# Writing

Write a unit with default compression and checksums:

	codec := xisf.CodecZlib
	res, err := xisf.Write(context.Background(), w, u, xisf.WriterOptions{
	    DefaultCompression: &codec,
	    CalculateChecksums: true,
	    ChecksumAlgorithm:  xisf.AlgorithmSHA256,
	})
	if err != nil {
	    return err
	}
	_ = res.XMLHeaderLength

# Data blocks

Pixel and thumbnail payloads are never interpreted; they are opaque
byte sequences addressed by one of four block-location shapes (inline,
embedded, attached, external). ReadBlock drives the shared checksum and
compression pipeline across all four shapes; byte order is left as stored,
for the caller to convert with ConvertByteOrder.

# Distributed units

OpenXisb opens a ".xisb" data-blocks file and exposes its unique-ID
index for random-access block reads; WriteDistributed emits the
XML-only ".xish" header form.
*/
package xisf
