// Package limits provides centralized size constants and validation functions
// for the Pixl link. This package ensures consistent size enforcement across
// all components of the pixlfs implementation.
//
// # Size Hierarchy
//
//   - MaxFrameSize (244 bytes): the largest single write or notification. It
//     is the default BLE ATT MTU of 247 bytes minus the 3 byte ATT header.
//
//   - MaxChunkSize (239 bytes): the largest WriteFile data block. A WriteFile
//     frame carries the 4 byte packet header and the 1 byte file handle ahead
//     of the data.
//
//   - DefaultChunkSize (200 bytes): the block size the firmware is known to
//     accept. Uploads use it unless configured otherwise.
//
//   - MaxResponsePayload (1MB): the largest logical response the session will
//     reassemble. Downloads return the whole file in one response, so this is
//     also the download size limit.
//
// # Validation Functions
//
//	if err := limits.ValidateChunkSize(cfg.ChunkSize); err != nil {
//	    // ErrEmpty or ErrTooLarge
//	}
//
//	if err := limits.ValidatePath(remotePath); err != nil {
//	    // reject before encoding the request
//	}
//
// All errors wrap ErrEmpty or ErrTooLarge and can be tested with errors.Is.
package limits
