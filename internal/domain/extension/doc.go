// Package extension maintains the registry of extension points and the
// extensions bundles plug into them.
//
// Each bundle may ship a contribution file (plugin.xml):
//
//	<plugin>
//	  <extension-point id="editors" name="Editors"/>
//	  <extension point="org.example.core.editors" id="text">
//	    <editor id="txt" class="TextEditor" default="true">Plain text</editor>
//	  </extension>
//	</plugin>
//
// Identifiers without a dot are qualified with the contributing bundle's
// symbolic name, so "editors" declared by org.example.core becomes
// "org.example.core.editors".
//
// An extension may be read before the bundle declaring its extension point.
// Such an extension is held as pending and attached as soon as the point is
// declared; until then it is invisible to queries.
//
// The nested elements of an extension become ConfigurationElements. An
// element can instantiate a class named by one of its attributes through the
// ClassLoader of the platform ("executable extension"), and can be queried
// with XPath.
package extension
