/*
Package browser provides a headless browsing surface.

Pages are fetched over HTTP by the shared resty client. The provider follows
redirects itself so every hop is reported to the page delegate through
ServerRedirect, with its origin and target, before it is requested, and cookies set on intermediate hops
land in the shared Jar.

All pages created by one Provider share a single Jar. Persisting cookies from
any page therefore yields the same snapshot, and restoring into one page makes
the cookies visible to every page.

# Navigation

Load, Activate and GoBack are asynchronous. Each starts a new load generation;
a load that is superseded or stopped never commits and reports ErrCancelled
only when stopped explicitly. Links opened with target "_blank" are handed to
the delegate as window requests.

HTML documents are parsed with goquery for their title and links. Bodies served
without a Content-Type are sniffed with mimetype.
*/
package browser
