// Package pixlfs is a client for the Pixl device file protocol.
//
// The device exposes its storage over a BLE link that carries one small
// frame at a time. A Client owns that link and layers three pieces on it:
// a session that tracks the single outstanding command and reassembles
// fragmented responses, a queue that runs uploads, downloads and other file
// operations as command sequences, and a lazily populated cache of the
// remote directory tree.
//
// # Getting Started
//
// Connect a transport, start the read loop and run the handshake:
//
//	link, err := transport.NewTCPTransport(ctx, "127.0.0.1:9123", 5*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := pixlfs.New(link, pixlfs.NewOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	go client.Run(ctx)
//
//	if err := client.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.WaitReady(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Browsing
//
// The handshake lists the drives and then the first drive's root. Further
// directories are listed on demand:
//
//	entries, err := client.List(ctx, "E:/amiibo")
//
// RequestListing and Fetch do the same without waiting; OnDirectoryUpdated
// fires when the cached tree has the result.
//
// # Transfers
//
// Operations run one at a time in FIFO order. Execute waits for the queue to
// drain and returns a summary of the batch:
//
//	ops, err := transfer.ExpandUpload("./dumps", "E:/amiibo")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	summary, err := client.Execute(ctx, ops, "Uploading")
//
// A failed operation is recorded and the queue moves on. Losing the link
// aborts the whole queue and Run returns ErrLinkLost.
//
// # Thread Safety
//
// Client methods may be called from any goroutine. Callbacks run after the
// client's internal lock has been released, so they may call back into the
// client.
package pixlfs
