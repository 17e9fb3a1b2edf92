// Package odb defines the object-writing capability shared by object
// databases: hand it an object's kind and content, get back its content id.
//
// Two implementations exist. [Sink] computes ids without retaining any bytes
// and is used to verify packs. The loose subpackage persists objects in the
// two-level hashed directory layout.
package odb
