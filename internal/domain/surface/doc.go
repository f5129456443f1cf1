/*
Package surface defines the browsing surface capability the session layer
drives: browsing contexts, their cookie stores and the delegate callbacks they
report navigation progress through.

Rendering is out of scope; providers/browser supplies a headless HTTP
implementation and platform shells supply real ones.
*/
package surface
